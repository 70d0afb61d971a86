package main

import (
	"flag"
	"log"

	"coinpulse/conf"
	"coinpulse/internal/app"
	"coinpulse/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "c", "config.yaml", "配置文件路径")
	flag.Parse()

	if err := conf.LoadConfig(configPath); err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	logger.Init(conf.AppConfig.Log)
	defer logger.Sync()

	app.Run()
}
