package types

// ClassLines maps original source lines of one class to decompiled lines.
type ClassLines struct {
	MaxSource int
	MaxDest   int
	Lines     map[int]int
}

// LineMap is keyed by internal class name.
type LineMap map[string]ClassLines
