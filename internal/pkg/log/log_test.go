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

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/test"
)

//
func TestSetup(t *testing.T) {

	th := test.NewTestHelper(t)
	buf := &bytes.Buffer{}
	l := logrus.New()

	th.AssertNoError(setup(l, buf, "debug", true))
	th.AssertEqual(logrus.DebugLevel, l.GetLevel())

	l.WithField("ref", "docker.io/library/demo:latest").Debug("pulling")

	entry := map[string]interface{}{}
	th.AssertNoError(json.Unmarshal(buf.Bytes(), &entry))
	th.AssertEqual("pulling", entry["msg"])
	th.AssertEqual("docker.io/library/demo:latest", entry["ref"])
	th.AssertEqual("debug", entry["level"])

	th.AssertNoError(setup(l, buf, "", false))
	th.AssertEqual(logrus.InfoLevel, l.GetLevel())

	th.AssertError(setup(l, buf, "chatty", false), "invalid log level 'chatty'")
}

//
func TestError(t *testing.T) {
	th := test.NewTestHelper(t)
	th.AssertFalse(Error(nil))
}
