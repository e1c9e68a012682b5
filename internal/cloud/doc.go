// Package cloud uploads feed values to a remote service and reads them back.
//
// Every backend implements Service (SendData, ReceiveData, Active) and is
// chosen once by New from the cloud config section:
//   - Adafruit: Adafruit IO REST API, plus feed management and the weather
//     and random-data integrations
//   - MQTT: retained messages on an MQTT v5 broker via paho.golang
//   - Memory: in-process sink for offline runs and tests
//
// Feed binds a Service to a single key. Errors are typed: ErrInactive when
// credentials are missing, *ThrottlingError on HTTP 429 and *RequestError for
// any other non-2xx response.
package cloud
