// Package api provides the client for the dashboard's durable-request API.
//
// Endpoints (relative to api.rest_url, default http://localhost:8000/api/v1):
//   - GET    /cryptos?limit=N        catalog
//   - GET    /cryptos/{id}           detail (404 -> ErrNotFound)
//   - GET    /alerts?status=S        alerts
//   - POST   /alerts                 create alert
//   - DELETE /alerts/{id}            delete alert
//   - GET    /favorites              favorites
//   - POST   /favorites              add favorite {crypto_id}
//   - DELETE /favorites/{id}         remove favorite
//   - GET    /health                 liveness
//
// Every response is wrapped in {success, data, error, message, timestamp}.
// A non-2xx status or success=false is reported as *APIError.
package api
