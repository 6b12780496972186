//go:build onnx

package main

import (
	"github.com/evermind-ai/evermind/config"
	"github.com/evermind-ai/evermind/memory"
	"github.com/evermind-ai/evermind/memory/embedder/onnx"
)

func buildONNXEmbedder(cfg config.EmbedderConfig) (memory.Embedder, error) {
	return onnx.New(onnx.Config{
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		LibraryPath:   cfg.LibraryPath,
	})
}
