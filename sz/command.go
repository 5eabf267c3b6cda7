/*
	This file holds the Command type used by the szinterp tool to parse its
	positional arguments and optional "key=value" settings.
*/

package sz

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys for setting various arguments within the command line via "key=value" strings.
const (
	KeyInput      = "in"
	KeyOutput     = "out"
	KeyDims       = "dims"
	KeyDataType   = "type"
	KeyErrorBound = "eb"
	KeyStore      = "store"
	KeyName       = "key"
	KeyParallel   = "parallel"
)

// Command is a command line where the first item is the command name and the
// other items are positional arguments or optional settings of the form "<key>=<value>".
type Command []string

// String returns a space-separated command line
func (cmd Command) String() string {
	return strings.Join([]string(cmd), " ")
}

// Name returns the first argument which is assumed to be the name of the command.
func (cmd Command) Name() string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

// Parameter scans a command for any "key=value" argument and returns
// the value of the passed 'key'.
func (cmd Command) Parameter(key string) (value string, found bool) {
	if len(cmd) > 1 {
		for _, arg := range cmd[1:] {
			elems := strings.SplitN(arg, "=", 2)
			if len(elems) == 2 && elems[0] == key {
				value = elems[1]
				found = true
				return
			}
		}
	}
	return
}

// FloatParameter returns a parsed floating-point setting.
func (cmd Command) FloatParameter(key string) (value float64, found bool, err error) {
	s, found := cmd.Parameter(key)
	if !found {
		return
	}
	value, err = strconv.ParseFloat(s, 64)
	if err != nil {
		err = fmt.Errorf("bad %s=%q setting: %v", key, s, err)
	}
	return
}

// IntParameter returns a parsed integer setting.
func (cmd Command) IntParameter(key string) (value int, found bool, err error) {
	s, found := cmd.Parameter(key)
	if !found {
		return
	}
	value, err = strconv.Atoi(s)
	if err != nil {
		err = fmt.Errorf("bad %s=%q setting: %v", key, s, err)
	}
	return
}

// Arguments returns the positional arguments after the command name, skipping
// any "key=value" settings.
func (cmd Command) Arguments() []string {
	var args []string
	if len(cmd) > 1 {
		for _, arg := range cmd[1:] {
			if !strings.Contains(arg, "=") {
				args = append(args, arg)
			}
		}
	}
	return args
}
