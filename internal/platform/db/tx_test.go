package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// STUB TX
// ============================================================================

type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (s *stubTx) Commit(context.Context) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = true
	return nil
}

func (s *stubTx) Rollback(context.Context) error {
	if !s.committed {
		s.rolledBack = true
	}
	return nil
}

type stubBeginner struct {
	tx   *stubTx
	opts pgx.TxOptions
	err  error
}

func (s *stubBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.tx, nil
}

type ctxKey struct{}

func TestWithTxCommitsAndPassesContext(t *testing.T) {
	beginner := &stubBeginner{tx: &stubTx{}}
	ctx := context.WithValue(context.Background(), ctxKey{}, "seed")

	var seen any
	err := WithTx(ctx, beginner, func(ctx context.Context, tx pgx.Tx) error {
		seen = ctx.Value(ctxKey{})
		assert.Same(t, beginner.tx, tx)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "seed", seen)
	assert.True(t, beginner.tx.committed)
	assert.False(t, beginner.tx.rolledBack)
	assert.Equal(t, pgx.ReadCommitted, beginner.opts.IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	beginner := &stubBeginner{tx: &stubTx{}}
	boom := errors.New("boom")

	err := WithTx(context.Background(), beginner, func(context.Context, pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, beginner.tx.committed)
	assert.True(t, beginner.tx.rolledBack)
}

func TestWithTxBeginAndCommitErrors(t *testing.T) {
	err := WithTx(context.Background(), &stubBeginner{err: errors.New("down")}, func(context.Context, pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorContains(t, err, "platform/db: begin tx")

	beginner := &stubBeginner{tx: &stubTx{commitErr: errors.New("serialization")}}
	err = WithTx(context.Background(), beginner, func(context.Context, pgx.Tx) error { return nil })
	assert.ErrorContains(t, err, "platform/db: commit tx")
}
