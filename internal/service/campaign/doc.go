// Package campaign implements the prospecting campaign approval workflow.
//
// A campaign is submitted to every validator of its Business Unit or
// Division. The first validator to decide wins: the decision is recorded,
// the campaign moves to VALIDATED or REJECTED, the other requests of the
// round become RESOLVED_BY_OTHER, and per-company verdicts are copied onto
// the campaign's company links. Approved companies are then executed one by
// one and may be converted into sales opportunities.
//
// Every multi-record transition runs in one repository transaction.
// Notifications are sent after commit and never roll anything back.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package campaign
