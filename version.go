package dvm

import "ergo.services/dvm/gen"

var (
	FrameworkVersion = gen.Version{
		Name:    "DVM",
		Release: "0.1.0-development",
		License: gen.LicenseMIT,
	}
)
