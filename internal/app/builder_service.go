package app

import (
	"fmt"

	"papertrade/internal/config"
	"papertrade/internal/gateway/notifier"
	"papertrade/internal/logger"
	"papertrade/internal/store/journal"
	"papertrade/internal/trader"
	deskhttp "papertrade/internal/transport/http/desk"
)

type journalStack struct {
	store    trader.EventStore
	events   trader.EventReader
	sink     trader.FillSink
	journal  *journal.Journal
	describe string
}

func buildJournal(cfg config.StoreConfig) (*journalStack, error) {
	switch cfg.Driver {
	case "":
		return &journalStack{describe: "disabled"}, nil
	case config.StoreDriverFile:
		fs, err := trader.NewFileEventStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open event file failed: %w", err)
		}
		return &journalStack{store: fs, events: fs, describe: "file " + cfg.Path}, nil
	case config.StoreDriverSQLite, config.StoreDriverPostgres:
		j, err := journal.Open(journal.Config{Driver: cfg.Driver, Path: cfg.Path, DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		desc := cfg.Driver
		if cfg.Driver == config.StoreDriverSQLite {
			desc += " " + cfg.Path
		}
		return &journalStack{store: j, events: j, sink: j, journal: j, describe: desc}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

type sinkStack struct {
	sinks   []trader.FillSink
	names   []string
	closers []func() error
}

func buildFillSinks(cfg config.NotifyConfig) (*sinkStack, error) {
	out := &sinkStack{}
	if tg := newTelegram(cfg); tg != nil {
		out.sinks = append(out.sinks, notifier.NewTextFillSink(tg))
		out.names = append(out.names, "telegram")
	}
	if cfg.NATS.Enabled {
		conn, err := notifier.DialNATS(cfg.NATS.URL, "papertrade")
		if err != nil {
			return nil, fmt.Errorf("connect nats %s failed: %w", cfg.NATS.URL, err)
		}
		out.sinks = append(out.sinks, notifier.NewNATSFillPublisher(conn, cfg.NATS.Subject))
		out.names = append(out.names, "nats")
		out.closers = append(out.closers, func() error {
			if err := conn.Drain(); err != nil {
				conn.Close()
				return err
			}
			return nil
		})
		logger.Infof("fill events published to nats %s (%s.*)", cfg.NATS.URL, cfg.NATS.Subject)
	}
	return out, nil
}

func newTelegram(cfg config.NotifyConfig) *notifier.Telegram {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func buildHTTPServer(cfg config.AppConfig, srv deskhttp.ServerConfig) (*deskhttp.Server, error) {
	srv.Addr = cfg.HTTPAddr
	server, err := deskhttp.NewServer(srv)
	if err != nil {
		return nil, fmt.Errorf("init desk http failed: %w", err)
	}
	logger.Infof("desk http api on %s", server.Addr())
	return server, nil
}
