/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logformat

import "fmt"

// Named log formats selectable in place of a literal format spec (§6).
const (
	Combined     = "COMBINED"
	VCombined    = "VCOMBINED"
	Common       = "COMMON"
	VCommon      = "VCOMMON"
	W3C          = "W3C"
	CloudFront   = "CLOUDFRONT"
	CloudStorage = "CLOUDSTORAGE"
)

var predefinedSpecs = map[string]string{
	Combined:   `%h %^[%d:%t %^] "%r" %s %b "%R" "%u"`,
	VCombined:  `%^:%^ %h %^[%d:%t %^] "%r" %s %b "%R" "%u"`,
	Common:     `%h %^[%d:%t %^] "%r" %s %b`,
	VCommon:    `%^:%^ %h %^[%d:%t %^] "%r" %s %b`,
	W3C:        `%d %t %h %^ %^ %^ %m %r %^ %s %b %^ %^ %u %R`,
	CloudFront: "%d\t%t\t%^\t%b\t%h\t%m\t%^\t%r\t%s\t%R\t%u\t%^",
	// CLOUDSTORAGE is CSV-shaped in the original tool; represented here as
	// a comma-delimited literal spec over the same specifier set.
	CloudStorage: `%d,%t,%^,%b,%h,%m,%^,%r,%s,%R,%u,%^`,
}

// Predefined date/time templates (§6).
const (
	DateApache  = "%d/%b/%Y"
	DateW3C     = "%Y-%m-%d"
	DateEpochUs = "%f"
	TimeDefault = "%H:%M:%S"
	TimeEpochUs = "%f"
)

// Resolve returns the literal format spec for a predefined name, or the
// input unchanged if it is not a recognized name (the caller then treats it
// as a custom spec).
func Resolve(nameOrSpec string) string {
	if spec, ok := predefinedSpecs[nameOrSpec]; ok {
		return spec
	}
	return nameOrSpec
}

// IsPredefinedName reports whether s names one of the seven built-in
// formats.
func IsPredefinedName(s string) bool {
	_, ok := predefinedSpecs[s]
	return ok
}

// TokenizeNamed resolves a predefined name (or passes through a literal
// spec) and tokenizes it, wrapping tokenize errors with the offending name.
func TokenizeNamed(nameOrSpec string) ([]Token, error) {
	spec := Resolve(nameOrSpec)
	toks, err := Tokenize(spec)
	if err != nil {
		return nil, fmt.Errorf("format %q: %w", nameOrSpec, err)
	}
	return toks, nil
}
