// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file contains the HCL parser that builds a File from source bytes.
//
// Why decode into private hcl* structs first?
//
// gohcl decodes straight into tagged structs, which gives us block structure,
// labels and required attributes for free. Those structs mirror the source
// syntax, though, not the model the rest of the system needs: types are still
// keywords, the session mode is still a string and optional expressions are
// placeholders. A second translation step turns them into the public model
// and reports anything gohcl cannot check on its own.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclFile represents the top-level structure of a source file for decoding.
type hclFile struct {
	Package   string         `hcl:"package,optional"`
	Functions []*hclFunction `hcl:"function,block"`
	Services  []*hclService  `hcl:"service,block"`
}

type hclFunction struct {
	Name      string         `hcl:"name,label"`
	Params    []*hclParam    `hcl:"param,block"`
	Result    hcl.Expression `hcl:"result,attr"`
	DeclRange hcl.Range      `hcl:",def_range"`
}

type hclParam struct {
	Name      string         `hcl:"name,label"`
	Type      hcl.Expression `hcl:"type,attr"`
	DeclRange hcl.Range      `hcl:",def_range"`
}

type hclService struct {
	Name      string         `hcl:"name,label"`
	BasePath  string         `hcl:"base_path,optional"`
	Resources []*hclResource `hcl:"resource,block"`
	DeclRange hcl.Range      `hcl:",def_range"`
}

type hclResource struct {
	Name       string         `hcl:"name,label"`
	Method     string         `hcl:"method,optional"`
	Path       string         `hcl:"path,optional"`
	Session    string         `hcl:"session,optional"`
	SetSession hcl.Expression `hcl:"set_session,optional"`
	Status     hcl.Expression `hcl:"status,optional"`
	Body       hcl.Expression `hcl:"body,optional"`
	Invalidate hcl.Expression `hcl:"invalidate_session,optional"`
	DeclRange  hcl.Range      `hcl:",def_range"`
}

// SyntaxError reports malformed source. It wraps the HCL diagnostics.
type SyntaxError struct {
	File  string
	Diags hcl.Diagnostics
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %s: %s", e.File, e.Diags.Error())
}

func (e *SyntaxError) Unwrap() error { return e.Diags }

// IsSyntaxError reports whether err is, or wraps, a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// Parser turns source bytes into a File. The zero value is ready to use and
// safe for concurrent use.
type Parser struct{}

// Parse parses src as the artifact fileName.
func (Parser) Parse(src []byte, fileName string) (*File, error) {
	// hclparse.Parser caches files by name, so a fresh one is needed for every
	// parse or a redeploy would see the previous contents.
	parsed, diags := hclparse.NewParser().ParseHCL(src, fileName)
	if diags.HasErrors() {
		return nil, &SyntaxError{File: fileName, Diags: diags}
	}

	var decoded hclFile
	diags = gohcl.DecodeBody(parsed.Body, nil, &decoded)
	if diags.HasErrors() {
		return nil, &SyntaxError{File: fileName, Diags: diags}
	}

	file, diags := decoded.translate(fileName)
	if diags.HasErrors() {
		return nil, &SyntaxError{File: fileName, Diags: diags}
	}
	return file, nil
}

// translate converts the decoded syntax into the public model.
func (b *hclFile) translate(fileName string) (*File, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	file := &File{
		Name:        fileName,
		PackageName: strings.TrimSpace(b.Package),
		Functions:   make([]*Function, 0, len(b.Functions)),
		Services:    make([]*Service, 0, len(b.Services)),
	}

	for _, hf := range b.Functions {
		fn := &Function{
			Name:      hf.Name,
			Result:    hf.Result,
			Params:    make([]*Param, 0, len(hf.Params)),
			DeclRange: hf.DeclRange,
		}
		for _, hp := range hf.Params {
			typ, typeDiags := TypeFromExpr(hp.Type)
			diags = append(diags, typeDiags...)
			fn.Params = append(fn.Params, &Param{Name: hp.Name, Type: typ, DeclRange: hp.DeclRange})
		}
		file.Functions = append(file.Functions, fn)
	}

	for _, hs := range b.Services {
		svc := &Service{
			Name:      hs.Name,
			BasePath:  strings.TrimSpace(hs.BasePath),
			Resources: make([]*Resource, 0, len(hs.Resources)),
			DeclRange: hs.DeclRange,
		}
		if svc.BasePath == "" {
			svc.BasePath = "/"
		}
		for _, hr := range hs.Resources {
			mode := SessionMode(strings.TrimSpace(hr.Session))
			if mode == "" {
				mode = SessionNone
			}
			svc.Resources = append(svc.Resources, &Resource{
				Name:       hr.Name,
				Method:     strings.ToUpper(strings.TrimSpace(hr.Method)),
				Path:       strings.TrimSpace(hr.Path),
				Session:    mode,
				SetSession: hr.SetSession,
				Status:     hr.Status,
				Body:       hr.Body,
				Invalidate: hr.Invalidate,
				DeclRange:  hr.DeclRange,
			})
		}
		file.Services = append(file.Services, svc)
	}

	return file, diags
}
