package load

import (
	"context"

	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/logger"
	"github.com/koustreak/frameload/internal/plan"
	"github.com/koustreak/frameload/internal/schema"
)

// Plan introspects the schema and orders the tables of frames.
func Plan(ctx context.Context, in schema.Introspector, frames []Frame) (*plan.Plan, error) {
	constraints, err := in.ListAllConstraints(ctx)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debugf("introspected %d constraint columns", len(constraints))

	return plan.BuildLoadOrder(constraints, Tables(frames))
}

// Run introspects the schema through in, plans the load and inserts frames
// through exec. The introspector and the executor should share a
// connection or transaction so they see the same schema.
func Run(ctx context.Context, exec database.Executor, in schema.Introspector, frames []Frame, opts Options) (*LoadReport, error) {
	p, err := Plan(ctx, in, frames)
	if err != nil {
		return nil, err
	}
	return Load(ctx, exec, p, frames, opts)
}

// RunInTx runs the whole load in one transaction on db. Any failure,
// including cancellation of ctx, rolls back every table.
func RunInTx(ctx context.Context, db database.DB, namespace string, frames []Frame, opts Options) (*LoadReport, error) {
	var report *LoadReport
	err := database.WithTx(ctx, db, func(ctx context.Context, tx database.Tx) error {
		var err error
		report, err = Run(ctx, tx, schema.New(tx, namespace), frames, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// RunDirect runs the load on the pool without a transaction. Tables loaded
// before a failure stay committed.
func RunDirect(ctx context.Context, db database.DB, namespace string, frames []Frame, opts Options) (*LoadReport, error) {
	logger.FromContext(ctx).Warnf("loading %d frames without a transaction", len(frames))
	return Run(ctx, db, schema.New(db, namespace), frames, opts)
}
