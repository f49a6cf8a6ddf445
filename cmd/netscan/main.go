// Command netscan keeps the table of devices attached to the LAN.
//
// It listens to ARP traffic on one interface, asks NetBIOS for the name of
// every host that answers ARP, and on SIGUSR1 re-probes the table and the
// subnet, dropping hosts that stay silent. SIGALRM re-renders the table.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/cdwhistler/netscan/arp"
	"github.com/cdwhistler/netscan/config"
	"github.com/cdwhistler/netscan/logger"
	"github.com/cdwhistler/netscan/nbns"
	"github.com/cdwhistler/netscan/plugins"
	fileplugin "github.com/cdwhistler/netscan/plugins/file"
	_ "github.com/cdwhistler/netscan/plugins/http"
	_ "github.com/cdwhistler/netscan/plugins/nats"
	_ "github.com/cdwhistler/netscan/plugins/sqlite"
	"github.com/cdwhistler/netscan/scheduler"
	"github.com/cdwhistler/netscan/targets"
	"github.com/cdwhistler/netscan/trigger"
	flag "github.com/spf13/pflag"
)

var (
	flagConfig    = flag.StringP("conf", "c", "/etc/netscan", "Directory holding config.yaml or config.json")
	flagConsul    = flag.String("consul", "", "Consul agent address. Empty disables the remote config")
	flagConsulKey = flag.String("consul-key", config.DefaultConsulKey, "Consul KV key of the remote config document")
	flagShow      = flag.StringP("show", "s", "", "Print the table file written by the file plugin and exit")
	flagLogLevel  = flag.StringP("loglevel", "L", "", "Log level, overrides logging.level")
	flagPlugins   = flag.BoolP("plugins", "P", false, "List registered plugins and exit")
)

var log = logger.GetLogger("main")

func main() {
	flag.Parse()

	if *flagPlugins {
		listPlugins(os.Stdout)
		return
	}
	if *flagShow != "" {
		if err := show(os.Stdout, *flagShow); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	var kv config.KV
	if *flagConsul != "" {
		var err error
		if kv, err = config.NewConsulKV(*flagConsul); err != nil {
			log.Fatalf("%v", err)
		}
	}
	cfg, err := config.NewConfigManager(kv, *flagConfig, *flagConsulKey).Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *flagLogLevel != "" {
		cfg.Logging.LogLevel = *flagLogLevel
	}
	if err := logger.Init(cfg.Logging); err != nil {
		log.Fatalf("%v", err)
	}

	var (
		local    arp.Local
		arpConn  *arp.Conn
		nbnsConn *nbns.Conn
	)
	err = inNetns(cfg.Netns, func() error {
		var err error
		if local, err = arp.LocalFromInterface(cfg.Interface); err != nil {
			return err
		}
		if arpConn, err = arp.Open(cfg.Interface); err != nil {
			return err
		}
		if nbnsConn, err = nbns.Listen(cfg.NBNS.Bind, cfg.NBNS.Port); err != nil {
			arpConn.Close()
			return err
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Cannot open sockets: %v", err)
	}
	defer arpConn.Close()
	defer nbnsConn.Close()

	subnet, err := targets.FromPrefix(local.Prefix)
	if err != nil {
		log.Warnf("Subnet %s is not probed: %v", local.Prefix, err)
	}
	schedCfg, err := cfg.Scheduler(subnet)
	if err != nil {
		log.Fatalf("%v", err)
	}
	s := scheduler.New(schedCfg, local, arpConn, nbnsConn)

	sinks, err := plugins.LoadPlugins(s, cfg.Plugins)
	if err != nil {
		log.Fatalf("%v", err)
	}
	s.AddSinks(sinks...)
	defer func() {
		for _, sink := range sinks {
			if err := sink.Close(); err != nil {
				log.Warnf("Close sink: %v", err)
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	trigger.Signals(ctx, s)
	if cfg.Trigger.File != "" {
		w, err := trigger.NewFileWatcher(cfg.Trigger.File, s)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer w.Close()
		go w.Run(ctx)
	}

	log.Infof("Watching ARP on %s as %s %s, probing %s", local.Interface, local.IP, local.MAC, schedCfg.Range)
	err = s.Run(ctx, scheduler.Frames(ctx, arpConn), scheduler.Datagrams(ctx, nbnsConn))
	log.Infof("Stopped: %v", err)
}

func listPlugins(w io.Writer) {
	names := make([]string, 0, len(plugins.RegisteredPlugins))
	for name := range plugins.RegisteredPlugins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
}

func show(w io.Writer, filename string) error {
	devices, err := fileplugin.ReadTable(filename)
	if err != nil {
		return err
	}
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "<unknown>"
		}
		fmt.Fprintf(w, "%-15s  %s  %s\n", d.IP, d.MAC, name)
	}
	return nil
}
