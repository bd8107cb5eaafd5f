// Command genmodule statically inspects a Go package implementing the
// Foreign Runtime Gate's module contract (foreignrt.Func/foreignrt.Class
// package-level declarations) and emits a YAML ModuleManifest describing
// its exported names and, via -depends, its dependencies.
//
// This is the pack-supplied analogue of mkaddon's manifest generation
// (cmd/mkaddon), now driven by static analysis via go/packages (as
// cmd/iofn does to find CFunction-assignable declarations) instead of
// hand-authored YAML.
package main

import (
	"flag"
	"fmt"
	"go/types"
	"os"
	"sort"

	"golang.org/x/tools/go/packages"
	"gopkg.in/yaml.v2"

	"github.com/ImPhilipGlover/EntropicGarden/bridge"
)

func main() {
	var name, foreignrtPath, depends string
	var out string
	flag.StringVar(&name, "name", "", "module name to record in the manifest (defaults to the package name)")
	flag.StringVar(&foreignrtPath, "foreignrt", "github.com/ImPhilipGlover/EntropicGarden/foreignrt", "import path for package foreignrt")
	flag.StringVar(&depends, "depends", "", "comma-separated list of module names this module depends on")
	flag.StringVar(&out, "o", "", "output file (default stdout)")
	flag.Parse()

	if flag.NArg() != 1 {
		fail(os.Args[0], "[-name NAME] [-depends A,B] [-o FILE] <package>")
	}

	cfg := &packages.Config{Mode: packages.NeedTypes | packages.NeedSyntax | packages.NeedImports | packages.NeedName}
	pkgs, err := packages.Load(cfg, foreignrtPath, flag.Arg(0))
	if err != nil {
		fail("loading packages:", err)
	}
	if len(pkgs) != 2 {
		fail("expected exactly the foreignrt package plus the target package, got", len(pkgs))
	}
	rtPkg, targetPkg := pkgs[0], pkgs[1]

	fnType, ok := lookupUnderlying(rtPkg, "Func")
	if !ok {
		fail(foreignrtPath, "has no definition of Func")
	}
	classType, ok := lookupUnderlying(rtPkg, "Class")
	if !ok {
		fail(foreignrtPath, "has no definition of Class")
	}

	m := &bridge.ModuleManifest{Name: name}
	if m.Name == "" {
		m.Name = targetPkg.Name
	}

	scope := targetPkg.Types.Scope()
	for _, n := range scope.Names() {
		obj := scope.Lookup(n)
		if obj == nil || !obj.Exported() {
			continue
		}
		t := obj.Type()
		switch {
		case types.AssignableTo(t, fnType):
			m.Functions = append(m.Functions, n)
		case types.AssignableTo(t, classType):
			m.Classes = append(m.Classes, n)
		}
	}
	sort.Strings(m.Functions)
	sort.Strings(m.Classes)
	if depends != "" {
		m.Depends = splitNonEmpty(depends, ',')
	}

	b, err := yaml.Marshal(m)
	if err != nil {
		fail("marshalling manifest:", err)
	}

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			fail("creating output file:", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(b); err != nil {
		fail("writing manifest:", err)
	}
}

func lookupUnderlying(pkg *packages.Package, name string) (types.Type, bool) {
	obj := pkg.Types.Scope().Lookup(name)
	if obj == nil {
		return nil, false
	}
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, false
	}
	return tn.Type().Underlying(), true
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func fail(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}
