package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	debversion "github.com/knqyf263/go-deb-version"
)

// splitSinceVersion is the first game version that ships separate client
// and server jars.
const splitSinceVersion = "1.3"

// versionCache memoizes parsed game versions and layer constraints.
type versionCache struct {
	deb  map[string]debversion.Version
	pep  map[string]pep440.Version
	spec map[string]pep440.Specifiers
}

func newVersionCache() *versionCache {
	return &versionCache{
		deb:  map[string]debversion.Version{},
		pep:  map[string]pep440.Version{},
		spec: map[string]pep440.Specifiers{},
	}
}

// debVersion parses a game version with Debian ordering rules, which accept
// release ("1.20.1"), pre-release ("1.20-pre1") and snapshot ("23w13a")
// names alike.
func (c *versionCache) debVersion(value string) (debversion.Version, error) {
	if parsed, ok := c.deb[value]; ok {
		return parsed, nil
	}
	parsed, err := debversion.NewVersion(value)
	if err != nil {
		return debversion.Version{}, err
	}
	c.deb[value] = parsed
	return parsed, nil
}

func (c *versionCache) pepVersion(value string) (pep440.Version, error) {
	if parsed, ok := c.pep[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.Parse(value)
	if err != nil {
		return pep440.Version{}, err
	}
	c.pep[value] = parsed
	return parsed, nil
}

func (c *versionCache) pepSpec(value string) (pep440.Specifiers, error) {
	if parsed, ok := c.spec[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.NewSpecifiers(value)
	if err != nil {
		return pep440.Specifiers{}, err
	}
	c.spec[value] = parsed
	return parsed, nil
}

// compare returns -1, 0, or 1. Unparseable versions compare equal.
func (c *versionCache) compare(a string, b string) int {
	v1, err := c.debVersion(a)
	if err != nil {
		return 0
	}
	v2, err := c.debVersion(b)
	if err != nil {
		return 0
	}
	switch n := v1.Compare(v2); {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// SupportsSplit reports whether the game version ships both a client and a
// server jar, which merged and split variants need.
func SupportsSplit(gameVersion string) (bool, error) {
	cache := newVersionCache()
	if _, err := cache.debVersion(gameVersion); err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid game version %q", gameVersion)).
			WithCause(err)
	}
	return cache.compare(gameVersion, splitSinceVersion) >= 0, nil
}

// CheckRequires validates a layer's PEP 440 constraint such as ">=1.20"
// against the game version.
func CheckRequires(gameVersion string, requires string) error {
	requires = strings.TrimSpace(requires)
	if requires == "" {
		return nil
	}
	cache := newVersionCache()
	spec, err := cache.pepSpec(requires)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid version constraint %q", requires)).
			WithCause(err)
	}
	version, err := cache.pepVersion(gameVersion)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("game version %q cannot be checked against %q", gameVersion, requires)).
			WithCause(err)
	}
	if !spec.Check(version) {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("game version %s does not satisfy %s", gameVersion, requires))
	}
	return nil
}
