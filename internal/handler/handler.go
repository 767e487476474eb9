package handler

import (
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
)

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
