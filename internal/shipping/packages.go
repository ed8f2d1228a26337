package shipping

import (
	"regexp"
	"strconv"
)

type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// Package is the box a piece ships in, in inches and pounds.
type Package struct {
	Length float64
	Width  float64
	Height float64
	Weight float64
}

var packages = map[SizeClass]Package{
	SizeSmall:  {Length: 10, Width: 10, Height: 4, Weight: 2},
	SizeMedium: {Length: 14, Width: 14, Height: 4, Weight: 3},
	SizeLarge:  {Length: 22, Width: 22, Height: 4, Weight: 5},
}

var leadingInches = regexp.MustCompile(`\d+`)

// ClassifySize maps a size option name such as "12 Inch Glass Art" to a package class
// using the first number in the name. Names without a number are medium.
func ClassifySize(sizeName string) SizeClass {
	m := leadingInches.FindString(sizeName)
	if m == "" {
		return SizeMedium
	}
	inches, err := strconv.Atoi(m)
	if err != nil {
		return SizeMedium
	}
	switch {
	case inches <= 8:
		return SizeSmall
	case inches >= 16:
		return SizeLarge
	default:
		return SizeMedium
	}
}

func PackageFor(class SizeClass) Package {
	if p, ok := packages[class]; ok {
		return p
	}
	return packages[SizeMedium]
}
