package binary

// NameWords is the number of words an envelope name occupies.
const NameWords = 8

// Group and layer names are shorter and take three words.
const shortNameWords = 3

const nameBias = 128

// EncodeName packs s into eight words, four bytes per word, most significant
// byte first, each byte biased by +128. The low byte of the last word is
// always zero so that a terminator exists even for a 31 byte name. Bytes past
// 31 are dropped.
func EncodeName(s string) [NameWords]int32 {
	var out [NameWords]int32
	copy(out[:], encodeNameWords(s, NameWords))
	return out
}

// DecodeName unpacks words produced by EncodeName. Decoding stops at the
// first zero byte.
func DecodeName(words [NameWords]int32) string {
	return decodeNameWords(words[:])
}

func encodeNameWords(s string, n int) []int32 {
	words := make([]int32, n)
	for i := range words {
		var w uint32
		for j := 0; j < 4; j++ {
			var c byte
			if k := i*4 + j; k < len(s) {
				c = s[k]
			}
			w |= uint32(c+nameBias) << (24 - 8*j)
		}
		words[i] = int32(w)
	}
	if n > 0 {
		words[n-1] = int32(uint32(words[n-1]) &^ 0xff)
	}
	return words
}

func decodeNameWords(words []int32) string {
	buf := make([]byte, 0, len(words)*4)
	for i, w := range words {
		for j := 0; j < 4; j++ {
			// the forced zero low byte of the last word is the terminator
			if i == len(words)-1 && j == 3 {
				break
			}
			c := byte(uint32(w)>>(24-8*j)) - nameBias
			if c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
		}
	}
	return string(buf)
}
