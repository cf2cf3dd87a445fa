// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package realtime fans row-change events out to connected browsers.

# Events

Handlers publish an Event after every committed mutation:

	pub.Publish(ctx, realtime.Event{
		Table:     realtime.TableTickets,
		Type:      realtime.EventInsert,
		SessionID: sessionID,
		RecordID:  ticket.ID,
		Record:    ticket.ForVoter(),
	})

Votes never produce events of their own; a vote updates its ticket's
total_votes and so emits a tickets UPDATE.

# Hub

Hub keeps subscribers per session and runs a single goroutine that owns
the subscriber map. Clients may restrict the tables they receive:

	hub.Register(sessionID, client, realtime.TableTickets)
	defer hub.Unregister(sessionID, client)

A subscriber whose Send fails is closed and dropped.

# Redis Relay

With several server instances, RedisRelay publishes through a Redis
channel and each instance's Run loop feeds received events into its hub.
Without Redis the Hub itself is the Publisher.
*/
package realtime
