package wire

import "strings"

// OriginAllowList valida el origin del emisor de cada mensaje entrante.
// Es una frontera de seguridad: el rechazo es silencioso (solo log), nunca
// un error de flujo.
type OriginAllowList struct {
	hosts map[string]struct{}
}

// NewOriginAllowList normaliza la lista (esquema fuera, minúsculas) una sola
// vez al arranque.
func NewOriginAllowList(origins []string) *OriginAllowList {
	hosts := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if h := normalizeOrigin(o); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return &OriginAllowList{hosts: hosts}
}

// Allowed compara por host exacto; nada de substring matching.
func (l *OriginAllowList) Allowed(origin string) bool {
	_, ok := l.hosts[normalizeOrigin(origin)]
	return ok
}

func normalizeOrigin(origin string) string {
	o := strings.ToLower(strings.TrimSpace(origin))
	o = strings.TrimPrefix(o, "https://")
	o = strings.TrimPrefix(o, "http://")
	return strings.TrimSuffix(o, "/")
}
