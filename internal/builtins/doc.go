// Package builtins provides the tool packs the gateway registers at startup.
//
// # Tool Packs
//
// CNC Pack - equipment data tools backed by the upstream REST API:
//
//   - get_iot_cnc_data: Fetch CNC records with optional filters and pagination
//   - get_iot_cnc_data_by_id: Fetch a single record by its document ID
//   - get_iot_equipment_list: List unique equipment IDs
//   - search_cnc_data: Search records with client-side refinement filters
//   - get_equipment_summary: Aggregate statistics for one equipment ID
//
// Notify Pack - outbound notification tools:
//
//   - send_email: Send an email with optional attachments
//   - send_template_email: Send a predefined HTML template with variables
//   - send_webhook: POST/PUT/PATCH a JSON payload to a URL
//
// # Registration
//
//	cnc := builtins.NewCNCPack(client, logger)
//	cnc.Register(registry)
//
//	np := builtins.NewNotifyPack(mailer, webhook, logger)
//	np.Register(registry)
//
// # Response Shape
//
// Every tool returns text content. Data tools emit a one-line summary
// followed by the records as a fenced JSON block, so callers that render
// markdown show a readable table-like view while programmatic callers can
// still parse the JSON out of the fence.
//
// Upstream responses may arrive Frappe-wrapped ({"message": {...}}) or bare;
// both are accepted.
package builtins
