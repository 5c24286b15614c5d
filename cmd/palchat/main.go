package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/palchat/backend/internal/app"
)

func main() {
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		slog.Error("palchat exited", "error", err)
		os.Exit(1)
	}
}
