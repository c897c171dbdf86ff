package zlib

const (
	adlerMod = 65521 // largest prime smaller than 65536

	// adlerNMax is the most bytes that can be summed before s2 could
	// overflow a uint32: 255*n*(n+1)/2 + (n+1)*(adlerMod-1) <= 1<<32-1.
	adlerNMax = 5552
)

// adler32 returns the Adler-32 checksum of p.
func adler32(p []byte) uint32 {
	return updateAdler32(1, p)
}

func updateAdler32(adler uint32, p []byte) uint32 {
	s1, s2 := adler&0xffff, adler>>16
	for len(p) > 0 {
		var rest []byte
		if len(p) > adlerNMax {
			p, rest = p[:adlerNMax], p[adlerNMax:]
		}
		for _, x := range p {
			s1 += uint32(x)
			s2 += s1
		}
		s1 %= adlerMod
		s2 %= adlerMod
		p = rest
	}
	return s2<<16 | s1
}
