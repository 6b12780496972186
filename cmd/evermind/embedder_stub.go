//go:build !onnx

package main

import (
	"fmt"

	"github.com/evermind-ai/evermind/config"
	"github.com/evermind-ai/evermind/memory"
)

func buildONNXEmbedder(config.EmbedderConfig) (memory.Embedder, error) {
	return nil, fmt.Errorf("onnx embedder requires building with -tags onnx")
}
