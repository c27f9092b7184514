package router

import (
	"os"
	"testing"

	"rag-chatbot-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}
