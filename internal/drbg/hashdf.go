package drbg

import "encoding/binary"

// maxHashDFBlocks is the largest block count the one-byte counter of
// hash_df can address.
const maxHashDFBlocks = 255

// hashDF is the Hash_df derivation function of SP 800-90A section 10.3.1.
// It fills out with len(out) bytes derived from the concatenation of inputs.
func hashDF(d Digest, out []byte, inputs ...[]byte) error {
	outLen := d.Size()
	n := (len(out) + outLen - 1) / outLen
	if n > maxHashDFBlocks {
		panic("drbg: hash_df request exceeds 255 digest blocks")
	}

	var hdr [5]byte
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(out)*8))

	block := newSecret(outLen)
	defer block.wipe()
	for i := 1; i <= n; i++ {
		hdr[0] = byte(i)
		d.Update(hdr[:])
		d.Update(inputs...)
		if err := d.Finish(block); err != nil {
			return err
		}
		copy(out[(i-1)*outLen:], block)
	}
	return nil
}

// addMod adds each addend, read as a big-endian unsigned integer, into acc
// modulo 2^(8*len(acc)). Addends are aligned on their least significant
// byte; bytes beyond the width of acc and the final carry are dropped.
func addMod(acc []byte, addends ...[]byte) {
	for _, a := range addends {
		var carry uint16
		j := len(a) - 1
		for i := len(acc) - 1; i >= 0; i-- {
			sum := carry + uint16(acc[i])
			if j >= 0 {
				sum += uint16(a[j])
				j--
			} else if carry == 0 {
				break
			}
			acc[i] = byte(sum)
			carry = sum >> 8
		}
	}
}

// counterBytes encodes n as one byte when it is below 256 and as its
// minimal big-endian form otherwise.
func counterBytes(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return b[i:]
}
