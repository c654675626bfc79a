package main

import (
	"flag"
	"fmt"
	"log"

	"bookswap/api/middleware"
	"bookswap/api/routes"
	"bookswap/config"
	"bookswap/db"
	"bookswap/services"

	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	log.Println("Starting server...", config.AppConfig)

	err = db.ConnectDB()
	if err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}

	// Redis и RabbitMQ опциональны, без них мессенджер работает
	// без кеша входящих и без событий для внешних потребителей
	if err := services.InitRedis(); err != nil {
		log.Printf("Redis unavailable, inbox cache disabled: %v", err)
	} else {
		defer services.CloseRedis()
	}
	if err := services.InitRabbitMQ(config.AppConfig.RabbitMQ.URL); err != nil {
		log.Printf("RabbitMQ unavailable, messaging events disabled: %v", err)
	} else {
		defer services.CloseRabbitMQ()
	}

	router := gin.Default()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware("messaging"))

	routes.PublicApi(router)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Backend.Host, config.AppConfig.Backend.Port)
	if config.AppConfig.Backend.Port == 0 {
		addr = ":8080"
	}

	// Start the server
	if err := router.Run(addr); err != nil {
		panic(err)
	}
}
