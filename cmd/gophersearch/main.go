package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/dangpham/gophersearch/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := "config.ini"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	logFile, err := os.OpenFile("gophersearch.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.Error("failed to open log file", "err", err)
		return 1
	}
	defer logFile.Close()

	log := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, logFile), nil))

	sup, err := supervisor.New(context.Background(), configPath, log)
	if err != nil {
		log.Error("fatal initialization error", "err", err)
		return 1
	}

	if err := sup.Run(context.Background()); err != nil {
		log.Error("fatal runtime error", "err", err)
		return 1
	}
	return 0
}
