// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

// Command upmix converts the given stereo files in one go and exits.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/ZSC714725/upmixmanager/internal/batch"
	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg"
	"github.com/ZSC714725/upmixmanager/internal/logger"
	"github.com/ZSC714725/upmixmanager/internal/tags"
)

const (
	exitFailed    = 1
	exitCancelled = 130
)

func main() {
	output := flag.String("o", "", "Output directory")
	format := flag.String("format", string(catalog.Surround51), "Upmix format")
	quality := flag.String("quality", string(catalog.Standard), "Output quality")
	ffmpegBin := flag.String("ffmpeg", "ffmpeg", "FFmpeg binary path")
	level := flag.String("log", "warn", "Log level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: upmix -o DIR [-format 5.1] [-quality standard] [-ffmpeg PATH] files...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logger.NewWithWriter("upmix", *level, os.Stderr)
	os.Exit(run(*output, *format, *quality, *ffmpegBin, flag.Args(), log))
}

func run(output, format, quality, binary string, files []string, log logger.Logger) int {
	if len(files) == 0 {
		flag.Usage()
		return exitFailed
	}

	ff, err := ffmpeg.New(ffmpeg.Config{Binary: binary, Logger: log.Named("ffmpeg")})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	engine, err := batch.New(batch.Config{
		Invoker:  ff,
		Format:   catalog.FormatID(format),
		Quality:  catalog.QualityID(quality),
		Validate: ff.ValidateInput,
		Tags:     tags.Read,
		Logger:   log.Named("batch"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	if _, err := engine.AddFiles(files); err != nil {
		// 部分文件无法加入时继续处理其余文件
		fmt.Fprintln(os.Stderr, err)
	}
	if output != "" {
		if err := engine.SetOutputDirectory(output); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailed
		}
	}

	states, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	if err := engine.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		for range sig {
			engine.Cancel()
		}
	}()

	r := newRenderer(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	for st := range states {
		r.render(st)
		if !st.Running && st.Phase == batch.PhaseIdle && st.RunID != "" {
			break
		}
	}
	engine.Wait()
	last := engine.Snapshot()
	r.done(last)

	switch {
	case last.Count(batch.Cancelled) > 0:
		return exitCancelled
	case last.Count(batch.Failed) > 0, last.Count(batch.Pending) > 0:
		return exitFailed
	}
	return 0
}

// renderer redraws one status line on a terminal and prints one line per
// change otherwise.
type renderer struct {
	w       io.Writer
	tty     bool
	message string
}

func newRenderer(w io.Writer, tty bool) *renderer {
	return &renderer{w: w, tty: tty}
}

func (r *renderer) render(st batch.State) {
	line := st.Message
	if st.Current != nil && st.Current.Running {
		line = fmt.Sprintf("%s %3.0f%%", line, st.Current.Fraction*100)
	}

	if r.tty {
		fmt.Fprintf(r.w, "\r\033[K[%3.0f%%] %s", st.Progress*100, line)
		return
	}
	if st.Message != r.message {
		fmt.Fprintf(r.w, "[%3.0f%%] %s\n", st.Progress*100, st.Message)
	}
	r.message = st.Message
}

func (r *renderer) done(st batch.State) {
	if r.tty {
		fmt.Fprintln(r.w)
	}
	for _, it := range st.Items {
		switch {
		case it.Err != nil:
			fmt.Fprintf(r.w, "%-10s %s: %s\n", it.Status, it.Name, it.Err.Message)
		case it.Output != "":
			fmt.Fprintf(r.w, "%-10s %s -> %s\n", it.Status, it.Name, it.Output)
		default:
			fmt.Fprintf(r.w, "%-10s %s\n", it.Status, it.Name)
		}
	}
	if st.LastError != nil && st.LastError.Detail != "" {
		fmt.Fprintln(r.w, st.LastError.Detail)
	}
}
