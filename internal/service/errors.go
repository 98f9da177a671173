package service

import "errors"

var (
	// ErrSinConexion marks operations that need connectivity and found none.
	ErrSinConexion = errors.New("no network connectivity")

	// ErrSinDatos is returned by LoadAll only when the remote read failed and
	// neither a usable cache snapshot nor queued records exist.
	ErrSinDatos = errors.New("no remote data, cache or queued records available")

	// ErrPINInvalido covers both a wrong PIN and a device with no PIN set.
	ErrPINInvalido = errors.New("invalid PIN")
)
