package main

import (
	"context"
	"flag"
	"os"
	"time"

	"csgo-floatdb/internal/client"
	"csgo-floatdb/internal/export"
	"csgo-floatdb/internal/logger"
)

var (
	apiURL  = flag.String("api", "http://127.0.0.1:8080", "floatdb API 地址")
	asset   = flag.String("asset", "", "资产ID (a)")
	outPath = flag.String("out", "", "输出文件, 默认 history-<asset>.xlsx")
	timeout = flag.Duration("timeout", 30*time.Second, "请求超时")
)

func main() {
	flag.Parse()
	log := logger.WithComponent("history-export")

	if *asset == "" {
		log.Fatal("missing -asset")
	}
	out := *outPath
	if out == "" {
		out = "history-" + *asset + ".xlsx"
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	records, err := client.New(*apiURL).History(ctx, *asset)
	if err != nil {
		log.WithError(err).Fatal("fetch history failed")
	}

	f, err := os.Create(out)
	if err != nil {
		log.WithError(err).Fatal("create output failed")
	}
	if err := export.WriteHistoryXLSX(f, *asset, records); err != nil {
		f.Close()
		log.WithError(err).Fatal("write xlsx failed")
	}
	if err := f.Close(); err != nil {
		log.WithError(err).Fatal("close output failed")
	}

	log.WithFields(logger.Fields{"asset": *asset, "rows": len(records), "file": out}).Info("history exported")
}
