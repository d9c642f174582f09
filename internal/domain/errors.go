package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound         = errors.New("recurso no encontrado")
	ErrInvalidInput     = errors.New("entrada inválida")
	ErrConflict         = errors.New("conflicto con el estado actual")
	ErrStoreUnavailable = errors.New("almacén de datos no disponible")
	ErrPublishFailed    = errors.New("no se pudo publicar la notificación")
	ErrBusy             = errors.New("ya hay una ejecución en curso")
)
