// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/upmixmanager/internal/api"
	"github.com/ZSC714725/upmixmanager/internal/batch"
	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/config"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg"
	"github.com/ZSC714725/upmixmanager/internal/logger"
	"github.com/ZSC714725/upmixmanager/internal/store"
	"github.com/ZSC714725/upmixmanager/internal/tags"
	"github.com/ZSC714725/upmixmanager/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.New("upmixmanager").Error("load config: %v", err)
			os.Exit(1)
		}
	}

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}

	level := cfg.Log.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	log := logger.NewWithLevel("upmixmanager", level)

	if err := run(cfg, log); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	validator, err := ffmpeg.NewValidator(cfg.FFmpeg.InputAllow, cfg.FFmpeg.InputBlock)
	if err != nil {
		return err
	}

	// 找不到 ffmpeg 时服务照常启动，开始升混时报错
	var invoker batch.Invoker
	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:         cfg.FFmpeg.Path,
		MaxLogLines:    cfg.FFmpeg.MaxLogLines,
		ValidatorInput: validator,
		Logger:         log.Named("ffmpeg"),
	})
	if err != nil {
		log.Warn("%v", err)
	} else {
		invoker = ff
		log.Info("using %s", ff.Binary())
	}

	var journal batch.Journal
	var runs api.RunStore
	var entries []batch.Entry
	var settings batch.Settings
	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path, log.Named("store"))
		if err != nil {
			return err
		}
		defer st.Close()

		entries, settings, err = st.Load()
		if err != nil {
			return err
		}
		journal, runs = st, st
	}

	engine, err := batch.New(batch.Config{
		Invoker:  invoker,
		Journal:  journal,
		Format:   catalog.FormatID(cfg.Upmix.Format),
		Quality:  catalog.QualityID(cfg.Upmix.Quality),
		Validate: validator.Validate,
		Tags:     tags.Read,
		Logger:   log.Named("batch"),
	})
	if err != nil {
		return err
	}

	if err := engine.Restore(entries, settings); err != nil {
		log.Warn("restore batch: %v", err)
	}
	if cfg.Upmix.Output != "" {
		if err := engine.SetOutputDirectory(cfg.Upmix.Output); err != nil {
			log.Warn("output directory %s: %v", cfg.Upmix.Output, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Dir != "" {
		w, err := watch.New(watch.Config{
			Dir: cfg.Watch.Dir,
			Add: func(path string) error {
				_, err := engine.AddFile(path)
				return err
			},
			Scan:      true,
			OutputDir: engine.OutputDirectory,
			Logger:    log.Named("watch"),
		})
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("watch %s: %v", cfg.Watch.Dir, err)
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Server.Bind,
		Handler: api.NewRouter(api.NewHandler(engine, ff, runs)),
	}

	go func() {
		<-ctx.Done()
		if err := engine.Cancel(); err == nil {
			engine.Wait()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("UpmixManager listening on %s", cfg.Server.Bind)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
