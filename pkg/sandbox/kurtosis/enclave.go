package kurtosis

import (
	"context"

	"github.com/kurtosis-tech/kurtosis/api/golang/engine/lib/kurtosis_context"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ForceDestroyEnclave removes an enclave by name through the kurtosis engine,
// regardless of whether this process created it. Intended for TestMain
// cleanup of orphaned or keep-alive enclaves.
func ForceDestroyEnclave(ctx context.Context, log logrus.FieldLogger, name string) error {
	kurtosisCtx, err := kurtosis_context.NewKurtosisContextFromLocalEngine()
	if err != nil {
		return errors.Wrap(err, "failed to connect to kurtosis engine")
	}

	if err := kurtosisCtx.DestroyEnclave(ctx, name); err != nil {
		if isEnclaveGone(err) {
			log.WithField("enclave", name).Debug("Enclave already removed")

			return nil
		}

		return errors.Wrapf(err, "failed to destroy enclave %s", name)
	}

	log.WithField("enclave", name).Info("Destroyed enclave")

	return nil
}
