package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testHelpFlag = "--help"

func TestMainRunsHelpCommand(testingT *testing.T) {
	originalArguments := os.Args
	testingT.Cleanup(func() {
		os.Args = originalArguments
	})

	os.Args = []string{commandUseName, testHelpFlag}
	main()
}

func TestListenAndServeShutsDownOnCancel(testingT *testing.T) {
	httpServer := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())

	serveResult := make(chan error, 1)
	go func() {
		serveResult <- listenAndServe(ctx, httpServer, zap.NewNop())
	}()
	cancel()

	select {
	case serveErr := <-serveResult:
		require.NoError(testingT, serveErr)
	case <-time.After(5 * time.Second):
		testingT.Fatal("listenAndServe did not return after cancellation")
	}
}
