package par

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// XPayToken calcula el token de transporte con ventana temporal:
// xv2:<ts>:<hmac-sha256-hex(ts + path + query + body)>.
// Cuando el body va cifrado en sobre, el componente body se pasa vacío: el
// tag de autenticación del sobre ya protege la integridad del payload.
func XPayToken(sharedSecret, resourcePath, queryString, body string) string {
	return xPayTokenAt(time.Now(), sharedSecret, resourcePath, queryString, body)
}

func xPayTokenAt(now time.Time, sharedSecret, resourcePath, queryString, body string) string {
	ts := now.Unix()
	mac := hmac.New(sha256.New, []byte(sharedSecret))
	fmt.Fprintf(mac, "%d%s%s%s", ts, resourcePath, queryString, body)
	return fmt.Sprintf("xv2:%d:%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
