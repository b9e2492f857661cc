package aes128

/*-------------------------------------------------------------
 *
 * Purpose:	CBC-MAC over a firmware image: the firmware-info
 *		header block, then every application block in order,
 *		skipping the signature block, with PKCS#7-style
 *		padding of the final partial block (or a full extra
 *		0x10 block when the length is already block-aligned).
 *
 *--------------------------------------------------------------*/

// CBCMACStep is the single CBC chaining step: XOR the plaintext block
// with the running chaining value, encrypt, and return the new
// chaining value (which is also the ciphertext for this block).
func CBCMACStep(ks *KeySchedule, block, chaining [BlockSize]byte) [BlockSize]byte {
	var toEncrypt [BlockSize]byte
	for i := range toEncrypt {
		toEncrypt[i] = block[i] ^ chaining[i]
	}
	return ks.Encrypt(toEncrypt)
}

// CBCMAC computes the CBC-MAC over header (the firmware-info header
// block) followed by appData (the application bytes that follow the
// signature block, with the header and signature blocks already
// excluded by the caller — see image.ComputeMAC), starting from a
// zero IV. The padding is decided by len(appData): if it isn't a
// multiple of 16, the final block is padded PKCS#7-style; if it
// already lands on a block boundary (including zero bytes), a full
// extra 0x10-valued block is appended, as a conventional CBC-MAC
// implementation (e.g. OpenSSL) would.
func CBCMAC(ks *KeySchedule, header [BlockSize]byte, appData []byte) [BlockSize]byte {
	var chaining [BlockSize]byte // zero IV
	chaining = CBCMACStep(ks, header, chaining)

	var offset = 0
	for offset+BlockSize <= len(appData) {
		var block [BlockSize]byte
		copy(block[:], appData[offset:offset+BlockSize])
		chaining = CBCMACStep(ks, block, chaining)
		offset += BlockSize
	}

	var remainder = len(appData) - offset
	var padCount = BlockSize - remainder
	if padCount == 0 {
		padCount = BlockSize
	}

	if remainder > 0 {
		var block [BlockSize]byte
		copy(block[:], appData[offset:])
		for i := remainder; i < BlockSize; i++ {
			block[i] = byte(padCount)
		}
		chaining = CBCMACStep(ks, block, chaining)
	} else {
		var block [BlockSize]byte
		for i := range block {
			block[i] = byte(padCount)
		}
		chaining = CBCMACStep(ks, block, chaining)
	}

	return chaining
}
