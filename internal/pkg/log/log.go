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
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh/terminal"
)

// ToTerminal is true when stdout is connected to a terminal.
var ToTerminal bool

func init() {
	ToTerminal = terminal.IsTerminal(int(os.Stdout.Fd()))
}

// Setup configures the global logrus logger. JSON output always carries
// timestamps, text output only when not writing to a terminal.
func Setup(level string, json bool) error {
	return setup(logrus.StandardLogger(), os.Stdout, level, json)
}

//
func setup(l *logrus.Logger, out io.Writer, level string, json bool) error {

	lvl := logrus.InfoLevel
	if level != "" {
		var err error
		if lvl, err = logrus.ParseLevel(level); err != nil {
			return fmt.Errorf("invalid log level '%s': %v", level, err)
		}
	}

	l.SetLevel(lvl)
	l.SetOutput(out)

	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: ToTerminal,
			FullTimestamp:    true,
		})
	}

	return nil
}

// Error logs err if not nil, and tells whether it did.
func Error(err error) bool {
	if err != nil {
		logrus.Error(err)
		return true
	}
	return false
}
