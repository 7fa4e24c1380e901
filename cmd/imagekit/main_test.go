/*
	Copyright 2020 Alexander Vollschwitz <xelalex@gmx.net>

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	  http://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package main

import (
	"bytes"
	"testing"

	"github.com/xelalexv/imagekit/internal/pkg/test"
)

//
func TestList(t *testing.T) {

	th := test.NewTestHelper(t)
	out := &bytes.Buffer{}

	th.AssertEqual(0, run([]string{
		"-list", th.GetFixture("images/library/alpine")}, out, &bytes.Buffer{}))
	th.AssertEqual(
		"docker.io/library/alpine:3.19 +latest\n"+
			"docker.io/library/alpine:3.18\n", out.String())
}

//
func TestListInvalid(t *testing.T) {

	th := test.NewTestHelper(t)

	th.AssertEqual(1, run([]string{
		"-list", th.GetFixture("images/cycle/a")},
		&bytes.Buffer{}, &bytes.Buffer{}))
	th.AssertEqual(1, run([]string{
		"-list", th.GetFixture("images/missing")},
		&bytes.Buffer{}, &bytes.Buffer{}))
}

//
func TestUsage(t *testing.T) {

	th := test.NewTestHelper(t)
	errOut := &bytes.Buffer{}

	th.AssertEqual(1, run(nil, &bytes.Buffer{}, errOut))
	th.AssertTrue(bytes.Contains(errOut.Bytes(), []byte("synopsis")))

	th.AssertEqual(2, run([]string{"-nope"}, &bytes.Buffer{}, &bytes.Buffer{}))
	th.AssertEqual(2, run([]string{"-loglevel", "chatty", "-list", "x"},
		&bytes.Buffer{}, &bytes.Buffer{}))
}

//
func TestInvalidConfig(t *testing.T) {
	th := test.NewTestHelper(t)
	th.AssertEqual(1, run([]string{
		"-config", th.GetFixture("config/invalid-relay.yaml")},
		&bytes.Buffer{}, &bytes.Buffer{}))
}
