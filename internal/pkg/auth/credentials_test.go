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

package auth_test

import (
	"encoding/base64"
	"testing"

	"github.com/xelalexv/imagekit/internal/pkg/auth"
	"github.com/xelalexv/imagekit/internal/pkg/test"
)

//
func TestCredentialsFromAuth(t *testing.T) {

	th := test.NewTestHelper(t)

	json := base64.StdEncoding.EncodeToString(
		[]byte(`{"username": "alice", "password": "secret"}`))
	c, err := auth.NewCredentialsFromAuth(json)
	th.AssertNoError(err)
	th.AssertEqual("alice", c.Username())
	th.AssertEqual("secret", c.Password())
	th.AssertEqual("alice:secret", c.UserPass())

	// JSON stays JSON
	d, err := auth.NewCredentialsFromAuth(c.Auth())
	th.AssertNoError(err)
	th.AssertEqual("alice", d.Username())
	th.AssertEqual(c.DockerAuth(), d.Auth())

	basic := base64.StdEncoding.EncodeToString([]byte("bob:pass:word"))
	c, err = auth.NewCredentialsFromAuth(basic)
	th.AssertNoError(err)
	th.AssertEqual("bob", c.Username())
	th.AssertEqual("pass:word", c.Password())
	th.AssertEqual(basic, c.Auth())

	c, err = auth.NewCredentialsFromAuth("none")
	th.AssertNoError(err)
	th.AssertTrue(c.IsEmpty())
	th.AssertEqual("", c.Auth())
	th.AssertEqual("", c.DockerAuth())
	th.AssertEqual("", c.UserPass())

	_, err = auth.NewCredentialsFromAuth("%%%")
	th.AssertError(err, "not valid base64")
}

//
func TestDockerAuthRoundTrip(t *testing.T) {

	th := test.NewTestHelper(t)

	c, err := auth.NewCredentialsFromBasic("carol", `pa"ss`)
	th.AssertNoError(err)

	d, err := auth.NewCredentialsFromAuth(c.DockerAuth())
	th.AssertNoError(err)
	th.AssertEqual("carol", d.Username())
	th.AssertEqual(`pa"ss`, d.Password())

	_, err = auth.NewCredentialsFromBasic("", "secret")
	th.AssertError(err, "password given without username")
}
