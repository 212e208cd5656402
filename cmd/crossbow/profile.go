package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/zap"

	"github.com/pranav-jay26/Crossbow/pkg/logger"
)

// startProfiling enables the CPU profile and arranges for a heap profile to
// be written when the returned stop func runs.
func startProfiling(opts *globalOptions) (func(), error) {
	var cpu *os.File
	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		cpu = f
		logger.Get().Debug("CPU profiling enabled", zap.String("file", opts.cpuProfile))
	}

	return func() {
		if cpu != nil {
			pprof.StopCPUProfile()
			cpu.Close()
		}
		if opts.memProfile == "" {
			return
		}
		if err := writeHeapProfile(opts.memProfile); err != nil {
			logger.Get().Warn("failed to write memory profile", zap.Error(err))
		}
	}, nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
