package core

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"loomkit/internal/types"
)

// ParseLineMap reads a decompiler linemap. Each class block starts with
// "Class\tmaxSrc\tmaxDst" followed by "\tsrc\tdst" lines.
func ParseLineMap(r io.Reader) (types.LineMap, error) {
	out := types.LineMap{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	current := ""
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			current = ""
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, "\t"), "\t")
		if len(fields) != 2 && len(fields) != 3 {
			return nil, lineMapError(lineNo, "expected tab separated columns")
		}
		if !strings.HasPrefix(line, "\t") {
			if len(fields) != 3 {
				return nil, lineMapError(lineNo, "class header needs name, max source and max destination")
			}
			name := fields[0]
			if _, ok := out[name]; ok {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeAlreadyExists).
					WithMsg(fmt.Sprintf("linemap line %d: duplicate class %s", lineNo, name))
			}
			maxSrc, err1 := strconv.Atoi(fields[1])
			maxDst, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil {
				return nil, lineMapError(lineNo, "invalid line numbers")
			}
			out[name] = types.ClassLines{MaxSource: maxSrc, MaxDest: maxDst, Lines: map[int]int{}}
			current = name
			continue
		}
		if current == "" {
			return nil, lineMapError(lineNo, "line entry outside of a class block")
		}
		if len(fields) != 2 {
			return nil, lineMapError(lineNo, "line entry needs source and destination")
		}
		src, err1 := strconv.Atoi(fields[0])
		dst, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			return nil, lineMapError(lineNo, "invalid line numbers")
		}
		out[current].Lines[src] = dst
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func lineMapError(line int, msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("linemap line %d: %s", line, msg))
}

// WriteLineMap writes classes and their lines in ascending order.
func WriteLineMap(w io.Writer, lm types.LineMap) error {
	bw := bufio.NewWriter(w)
	names := make([]string, 0, len(lm))
	for name := range lm {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cls := lm[name]
		fmt.Fprintf(bw, "%s\t%d\t%d\n", name, cls.MaxSource, cls.MaxDest)
		srcs := make([]int, 0, len(cls.Lines))
		for src := range cls.Lines {
			srcs = append(srcs, src)
		}
		sort.Ints(srcs)
		for _, src := range srcs {
			fmt.Fprintf(bw, "\t%d\t%d\n", src, cls.Lines[src])
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// MapLine translates one original line. Lines without an entry take the
// next mapped line after them, or the last destination line.
func MapLine(cls types.ClassLines, line int) int {
	if dst, ok := cls.Lines[line]; ok {
		return dst
	}
	for i := line + 1; i <= cls.MaxSource; i++ {
		if dst, ok := cls.Lines[i]; ok {
			return dst
		}
	}
	return cls.MaxDest
}

// MergeLineMaps combines maps of separately decompiled jars.
func MergeLineMaps(maps ...types.LineMap) (types.LineMap, error) {
	out := types.LineMap{}
	for _, lm := range maps {
		for name, cls := range lm {
			if _, ok := out[name]; ok {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeAlreadyExists).
					WithMsg(fmt.Sprintf("class %s appears in more than one linemap", name))
			}
			out[name] = cls
		}
	}
	return out, nil
}
