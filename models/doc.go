// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - SignInRequest: email, name
  - CreateSessionRequest: name
  - EndSessionRequest: confirm
  - AddTicketRequest: ticket_number, title, jira_link
  - UpdateFinalValueRequest: value (number or string)
  - SubmitVoteRequest: value (card number or "?")

# Response Types

Types for JSON responses:

  - SignInResponse: user, token
  - CreateSessionResponse: session_id, participant_id, redirect
  - JoinSessionResponse: participant_id, reused, redirect
  - SubmitVoteResponse: persisted, total_votes, next_ticket_id, advance_after_ms
  - ReviewResponse: session, tickets with votes and median, participants, stats
  - ErrorResponse: error, message, redirect

# Domain Types

  - Identity: the signed-in caller
  - User, Session, Participant, Ticket, Vote: one per table
  - VoterTicket: Ticket without median and final value
  - ActiveSession: join picker entry

# Estimates

Cards, in display order:

	0, 0.5, 1, 2, 3, 5, 8, "?"

EstimateOptions holds the numeric cards. EstimateUnknown ("?") is accepted
but never written. AutoAdvanceDelay is how long the voting view waits
before showing the next ticket.
*/
package models
