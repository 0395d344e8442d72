// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines File, the root of the model for a single artifact.
//
// Why keep a whole file together?
//
// A file is the unit of deployment. The registry groups files into packages
// and applications, update replaces a file by name, and single-script runs
// look up their entry point inside one file. Keeping functions and services of
// a file side by side lets every one of those operations work on one value.
package model

// File is the parsed model of one source artifact.
type File struct {
	// Name is the artifact name the file was deployed under.
	Name string

	// PackageName is the value of the top-level `package` attribute, or empty
	// when the file does not declare one.
	PackageName string

	Functions []*Function
	Services  []*Service
}

// Function returns the function declared with the given name.
func (f *File) Function(name string) (*Function, bool) {
	if f == nil {
		return nil, false
	}
	for _, fn := range f.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// Service returns the service declared with the given name.
func (f *File) Service(name string) (*Service, bool) {
	if f == nil {
		return nil, false
	}
	for _, svc := range f.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return nil, false
}
