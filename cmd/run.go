package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/notedapp/noted-sync/internal/service"

	"github.com/radovskyb/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	dir string
}

// agent pairs one wired appContext with its running scheduler. Config
// reloads swap the whole pair through an atomic pointer, so the watcher
// goroutine and the shutdown path never race on the fields.
type agent struct {
	app   *appContext
	sched *service.Scheduler
}

func startAgent() (*agent, error) {
	app, err := newApp()
	if err != nil {
		return nil, err
	}
	sched := service.NewScheduler(app.cfg.Sync.Schedule, app.syncService, app.creds, app.logger)
	if err := sched.Start(); err != nil {
		app.close()
		return nil, err
	}
	return &agent{app: app, sched: sched}, nil
}

func (a *agent) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.sched.Stop(ctx)
	a.app.close()
}

func init() {
	runEnv := new(runFlags)

	var runCommand = &cobra.Command{
		Use:   "run [-c config_file] [-d working_dir]",
		Short: "Run the sync agent with the periodic scheduler",
		Run: func(cmd *cobra.Command, args []string) {
			if len(runEnv.dir) > 0 {
				if err := os.Chdir(runEnv.dir); err != nil {
					bootstrapLogger.Error("failed to change the current working directory", zap.Error(err))
					return
				}
				bootstrapLogger.Info("working directory changed", zap.String("dir", runEnv.dir))
			}

			cur, err := startAgent()
			if err != nil {
				bootstrapLogger.Error("agent start err", zap.Error(err))
				return
			}
			var live atomic.Pointer[agent]
			live.Store(cur)

			go watchConfig(cur.app.cfg.File, &live)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			a := live.Load()
			a.app.logger.Info("received shutdown signal, stopping")
			a.stop()
		},
	}

	runCommand.Flags().StringVarP(&runEnv.dir, "dir", "d", "", "working directory")
	rootCmd.AddCommand(runCommand)
}

// watchConfig restarts the agent when the config file is rewritten.
func watchConfig(path string, live *atomic.Pointer[agent]) {
	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write)

	go func() {
		for {
			select {
			case event := <-w.Event:
				prev := live.Load()
				prev.app.logger.Info("config changed, restarting",
					zap.String("file", event.Path))
				prev.stop()

				next, err := startAgent()
				if err != nil {
					bootstrapLogger.Error("agent restart err", zap.Error(err))
					continue
				}
				live.Store(next)
			case err := <-w.Error:
				live.Load().app.logger.Error("config watcher error", zap.Error(err))
			case <-w.Closed:
				return
			}
		}
	}()

	if err := w.Add(path); err != nil {
		live.Load().app.logger.Error("config watcher file error", zap.Error(err))
		return
	}
	if err := w.Start(5 * time.Second); err != nil {
		live.Load().app.logger.Error("config watcher start error", zap.Error(err))
	}
}
