package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/mgutz/logxi" // Using a forked copy of this package results in build issues

	"github.com/karlmutch/errors"

	"github.com/ledgrid/nightdriver"
	"github.com/ledgrid/nightdriver/model"
	"github.com/ledgrid/nightdriver/version"

	"github.com/karlmutch/envflag" // Forked copy of https://github.com/GoBike/envflag
)

var (
	logger = logxi.New("nightdriver")

	verbose        = flag.Bool("v", false, "When enabled will print internal logging for this tool")
	cfgFile        = flag.String("config", "", "YAML site list, a built in demonstration site list is used when omitted")
	statusInterval = flag.Duration("status-interval", 5*time.Second, "How often the per site status lines are refreshed")
)

func usage() {
	fmt.Fprintln(os.Stderr, path.Base(os.Args[0]))
	fmt.Fprintln(os.Stderr, "usage: ", os.Args[0], "[options]       LED frames → TCP strip controllers      ", version.GitHash, "    ", version.BuildTime)
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "nightdriver renders timestamped LED animation frames and streams them to NightDriver strip controllers")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment Variables:")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options can also be extracted from environment variables by changing dashes '-' to underscores and using upper case.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "log levels are handled by the LOGXI env variables, these are documented at https://github.com/mgutz/logxi")
}

func init() {
	flag.Usage = usage
}

func main() {

	// Parse the CLI flags
	if !flag.Parsed() {
		envflag.Parse()
	}

	// Raise logging to the debug level when the verbose flag is enabled, otherwise the
	// levels set through the LOGXI environment variables apply unchanged.
	//
	if *verbose {
		logger.SetLevel(logxi.LevelDebug)
	}

	logger.Debug(fmt.Sprintf("%s built at %s, against commit id %s\n", os.Args[0], version.BuildTime, version.GitHash))

	cfg := defaultConfig()
	if len(*cfgFile) != 0 {
		loaded, err := model.LoadConfig(*cfgFile)
		if err != nil {
			logger.Fatal(err.Error())
			os.Exit(-1)
		}
		cfg = loaded
	}

	reg, err := nightdriver.NewRegistry(cfg)
	if err != nil {
		logger.Fatal(err.Error())
		os.Exit(-1)
	}

	quitC := make(chan struct{})
	errorC := make(chan errors.Error, 1)

	subscribeC, err := reg.Start(*statusInterval, errorC, quitC)
	if err != nil {
		logger.Fatal(err.Error())
		os.Exit(-1)
	}

	go runMonitoring(reg, subscribeC, quitC)
	go errWatch(errorC, quitC)

	// The service runs until the process is told to stop, there is no other
	// shutdown path
	stopC := make(chan os.Signal, 1)
	signal.Notify(stopC, os.Interrupt, syscall.SIGTERM)
	<-stopC

	close(quitC)
}

func errWatch(errorsC <-chan errors.Error, quitC <-chan struct{}) {
	for {
		select {
		case err := <-errorsC:
			logger.Warn(err.Error())
		case <-quitC:
			return
		}
	}
}
