/*
   cbmimage - Commodore 8-bit disk image library
   Copyright (c) 2024, The OpenCBM team

   This file is part of cbmimage.

   cbmimage is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   cbmimage is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with cbmimage. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

/*
	Logging is configured from the environment when the package loads:

		LOG_FORMAT		`json` switches to JSON log entries
		LOG_FORCE_COLORS	non-empty forces colorized entries
		LOG_METHODS		non-empty includes the caller in each entry
		LOG_LEVEL		panic, fatal, error, warn, info, debug, trace
*/
func init() {

	log.SetOutput(os.Stdout)

	switch {
	case strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"):
		log.SetFormatter(&log.JSONFormatter{})
	case os.Getenv("LOG_FORCE_COLORS") != "":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	}

	if os.Getenv("LOG_METHODS") != "" {
		log.SetReportCaller(true)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if l, err := log.ParseLevel(level); err != nil {
			log.Errorf("invalid log level: '%s'; valid levels are: panic, "+
				"fatal, error, warn, info, debug, trace", level)
		} else {
			log.SetLevel(l)
		}
	}
}

//
var (
	UnderTest bool
)

// DieOnError exits the running process if e is not nil.
func DieOnError(e error) {
	if e != nil {
		fmt.Printf("%v\n", e)
		if UnderTest {
			panic(e.Error())
		} else {
			os.Exit(1)
		}
	}
}

// Die exits the running process, printing the given message.
func Die(msg string, params ...interface{}) {
	if UnderTest {
		err := fmt.Sprintf(msg, params...)
		fmt.Print(err)
		panic(err)
	} else {
		if len(params) > 0 {
			fmt.Printf(msg, params...)
		} else {
			fmt.Println(msg)
		}
		os.Exit(1)
	}
}

/*
	NewCommand wraps a new Cobra command; exec runs when Execute is called.
*/
func NewCommand(use, short, long string, exec func() error) *Command {

	return &Command{
		cmd: &cobra.Command{
			Use:   use,
			Short: short,
			Long:  long,
			RunE: func(*cobra.Command, []string) error {
				return exec()
			},
			SilenceErrors:         true,
			SilenceUsage:          true,
			DisableFlagsInUseLine: true,
		},
	}
}

/*
	Command ties Cobra, pflag and Viper together. Settings are declared
	with the typed Bind methods below; each setting can come from its
	command line flag or, where one is declared, from an environment
	variable, with the flag taking precedence. ParseSettings pulls the
	final values into the bound variables and enforces required settings
	with a message that names both sources.
*/
type Command struct {
	//
	cmd *cobra.Command
	//
	bindings []binding
	//
	Args []string
}

// binding is one declared setting: where its value may come from, and a
// closure that moves the resolved value into the bound variable.
type binding struct {
	flag     string
	env      string
	required bool

	// resolve writes the setting's value to its target and reports
	// whether a usable (non-zero) value was found
	resolve func() bool
}

//
func (c *Command) register(f *pflag.Flag, env string, required bool,
	resolve func() bool) {

	viper.BindPFlag(f.Name, f)
	if env != "" {
		viper.BindEnv(f.Name, env)
	}

	c.bindings = append(c.bindings, binding{
		flag:     f.Name,
		env:      env,
		required: required,
		resolve:  resolve,
	})
}

//
func (c *Command) flagHelp(env, help string) string {
	if env == "" {
		return help
	}
	return fmt.Sprintf("%s (%s)", help, env)
}

/*
	BindString declares a string setting. env may be empty; def is the
	value used when neither flag nor environment provide one.
*/
func (c *Command) BindString(target *string, flag, short, env, def,
	help string, required bool) {

	c.cmd.Flags().StringVarP(target, flag, short, def, c.flagHelp(env, help))

	c.register(c.cmd.Flags().Lookup(flag), env, required, func() bool {
		// Viper sees both sources; the pflag variable alone would miss
		// values that came in through the environment
		*target = viper.GetString(flag)
		return *target != ""
	})
}

// BindInt declares an integer setting.
func (c *Command) BindInt(target *int, flag, short string, def int,
	help string, required bool) {

	c.cmd.Flags().IntVarP(target, flag, short, def, help)

	c.register(c.cmd.Flags().Lookup(flag), "", required, func() bool {
		*target = viper.GetInt(flag)
		return *target != 0
	})
}

// BindIntSlice declares a repeatable integer setting.
func (c *Command) BindIntSlice(target *[]int, flag, short, help string) {

	c.cmd.Flags().IntSliceVarP(target, flag, short, nil, help)

	c.register(c.cmd.Flags().Lookup(flag), "", false, func() bool {
		*target = viper.GetIntSlice(flag)
		return len(*target) > 0
	})
}

/*
	ParseSettings resolves all declared settings into their bound
	variables and collects the remaining command line arguments into Args.
	A missing required setting terminates the process, telling the user
	which flag, and which environment variable if there is one, would
	supply it. Call this at the top of the command's exec function.
*/
func (c *Command) ParseSettings() {

	for _, b := range c.bindings {
		if b.resolve() || !b.required {
			continue
		}
		msg := fmt.Sprintf(
			"you need to specify the --%s command line flag", b.flag)
		if b.env != "" {
			msg = fmt.Sprintf("%s or the %s environment variable", msg, b.env)
		}
		DieOnError(fmt.Errorf("%s", msg))
	}

	c.Args = c.cmd.Flags().Args()
}

/*
	Execute invokes the exec function that was set on this command when it
	was created. If args is of non-zero length, it overrides os.Args.
*/
func (c *Command) Execute(args []string) error {
	if len(args) > 0 {
		c.cmd.SetArgs(args)
	}
	return c.cmd.Execute()
}
