package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"threadfu/internal/cache"
	"threadfu/internal/config"
	"threadfu/internal/history"
	"threadfu/internal/logger"
	"threadfu/internal/projection"
	"threadfu/internal/remote"
	"threadfu/internal/thread"
	"threadfu/internal/transport"
	"threadfu/internal/tui"
	"threadfu/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "threadfu:", err)
		os.Exit(1)
	}
}

func run() error {
	defaultPath, _ := config.DefaultPath()
	configPath := flag.String("config", defaultPath, "path to config file")
	transportFlag := flag.String("transport", "", "transport variant: poll or stream (overrides config)")
	threadID := flag.String("thread", "", "resume an existing thread by id")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *transportFlag != "" {
		cfg.Transport = *transportFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Service and transport changes take effect on restart; the watch
	// exists so a running session notices edits and says so.
	if err := config.Watch(ctx, *configPath, log, func(*config.Config) {
		log.Info("config file changed; restart to apply service settings")
	}); err != nil {
		log.Warn("config watch unavailable", zap.Error(err))
	}

	store := thread.NewMessageStore()
	identity := thread.NewIdentity()

	kv, err := cache.New(cfg.CachePath)
	if err != nil {
		// The cache is advisory; run without it rather than failing.
		log.Warn("fallback cache unavailable", zap.Error(err))
	} else {
		defer kv.Close()
	}
	var auxCache projection.Cache
	if kv != nil {
		auxCache = kv
	}
	aux := projection.NewAuxProjector(auxCache, cfg.DebounceWindow, log)

	client := remote.NewClient(remote.Config{
		BaseURL:    cfg.Service.BaseURL,
		AgentID:    cfg.Service.AgentID,
		AuthHeader: cfg.Service.AuthHeader,
		AuthToken:  cfg.Service.AuthToken,
		Timeout:    cfg.Service.Timeout,
	}, log)

	var adapter transport.Adapter
	var streamAdapter *transport.StreamAdapter
	if cfg.Transport == "stream" {
		dial := func(ctx context.Context, threadID string, input remote.RunInput) (transport.EventSource, error) {
			return client.OpenStream(ctx, threadID, input)
		}
		streamAdapter = transport.NewStreamAdapter(dial, client, store, identity, aux, cfg.RecursionLimit, log)
		adapter = streamAdapter
	} else {
		adapter = transport.NewPollAdapter(client, store, identity, aux, cfg.RecursionLimit, log)
	}

	index := history.NewIndex(client, cfg.HistoryPageSize, log)

	model := tui.New(adapter, store, identity, index, cfg.Transport == "stream", log)
	program := tea.NewProgram(model, tea.WithAltScreen())

	aux.OnTodos(func(todos []types.TodoItem) {
		program.Send(tui.TodosMsg(todos))
	})
	aux.OnFiles(func(files map[string]string) {
		program.Send(tui.FilesMsg(files))
	})
	if streamAdapter != nil {
		streamAdapter.OnDone(func(err error) {
			program.Send(tui.RunDoneMsg{Err: err})
		})
	}

	if *threadID != "" {
		identity.Resume(*threadID)
		if err := adapter.LoadThread(ctx, *threadID); err != nil {
			log.Warn("failed to resume thread", zap.String("threadId", *threadID), zap.Error(err))
		}
	}

	_, err = program.Run()
	return err
}
