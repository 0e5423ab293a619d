// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// connectionManager keeps a receiver fed across connection loss, reopening
// the connection with exponential backoff
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	rx       *receiver

	// open is OpenConnection outside of tests
	open func() (Connection, string, error)

	// Optional notifications, called from the run goroutine
	onLost        func(err error)
	onReconnected func(connInfo string)
}

func newConnectionManager(conn Connection, connInfo string, rx *receiver) *connectionManager {
	return &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		rx:       rx,
		open:     OpenConnection,
	}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// Close closes the current connection
func (cm *connectionManager) Close() error {
	if conn := cm.getConn(); conn != nil {
		return conn.Close()
	}
	return nil
}

// run decodes until ctx is cancelled, reconnecting whenever the connection
// fails. It always returns ctx.Err().
func (cm *connectionManager) run(ctx context.Context) error {
	for {
		err := cm.rx.run(ctx, cm.getConn())
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("connection lost", zap.String("connection", cm.connInfo), zap.Error(err))
		if cm.onLost != nil {
			cm.onLost(err)
		}

		if !cm.reconnect(ctx) {
			return ctx.Err()
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if ctx was cancelled during reconnection
func (cm *connectionManager) reconnect(ctx context.Context) bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := cm.open()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.rx.rebind()

			logger.Info("reconnected", zap.String("connection", connInfo))
			if cm.onReconnected != nil {
				cm.onReconnected(connInfo)
			}
			return true
		}

		logger.Debug("reconnect failed", zap.Duration("backoff", backoff), zap.Error(err))

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
