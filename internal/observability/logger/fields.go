package logger

import (
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/passbridge/internal/util"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS DE DOMINIO - FLUJO DE AUTORIZACIÓN
// =================================================================================

// CorrelationID crea un campo para el correlation id del flujo.
func CorrelationID(v string) zap.Field {
	return zap.String("correlation_id", v)
}

// FlowState crea un campo para el estado actual de la sesión de flujo.
func FlowState(v string) zap.Field {
	return zap.String("flow_state", v)
}

// FlowType crea un campo para el tipo de flujo (registration|authentication).
func FlowType(v string) zap.Field {
	return zap.String("flow_type", v)
}

// CommandType crea un campo para el tipo de COMMAND saliente.
func CommandType(v string) zap.Field {
	return zap.String("command_type", v)
}

// EventType crea un campo para el tipo de EVENT entrante.
func EventType(v string) zap.Field {
	return zap.String("event_type", v)
}

// MessageType crea un campo para el tipo de mensaje cross-window.
func MessageType(v string) zap.Field {
	return zap.String("message_type", v)
}

// Origin crea un campo para el origin de un mensaje entrante.
func Origin(v string) zap.Field {
	return zap.String("origin", v)
}

// Outcome crea un campo para el resultado de una llamada PAR.
func Outcome(v string) zap.Field {
	return zap.String("outcome", v)
}

// RoutingHint crea un campo para el hint de afinidad de data center.
func RoutingHint(v string) zap.Field {
	return zap.String("routing_hint", v)
}

// KID crea un campo para el key id en uso.
func KID(v string) zap.Field {
	return zap.String("kid", v)
}

// Credential crea un campo con la referencia de credencial YA enmascarada:
// la credencial cruda nunca toca los logs.
func Credential(v string) zap.Field {
	return zap.String("credential", util.MaskPAN(v))
}

// Email crea un campo con el email enmascarado.
func Email(v string) zap.Field {
	return zap.String("email", util.MaskEmail(v))
}

// ServerState crea un campo con el token server_state enmascarado.
func ServerState(v string) zap.Field {
	return zap.String("server_state", util.MaskToken(v))
}

// =================================================================================
// CAMPOS GENERALES
// =================================================================================

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Component crea un campo para identificar el componente.
func Component(v string) zap.Field {
	return zap.String("component", v)
}
