// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchmark

// Funcs is an Instance built from plain functions. Nil Setup and
// Teardown are no-ops.
type Funcs struct {
	Setup    func() error
	Methods  map[string]Method
	Teardown func() error
}

func (f *Funcs) SetUp() error {
	if f.Setup == nil {
		return nil
	}
	return f.Setup()
}

func (f *Funcs) Method(name string) (Method, bool) {
	m, ok := f.Methods[name]
	return m, ok
}

func (f *Funcs) TearDown() error {
	if f.Teardown == nil {
		return nil
	}
	return f.Teardown()
}
