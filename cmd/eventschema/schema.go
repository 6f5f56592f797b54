package main

import (
	"sort"

	"github.com/invopop/jsonschema"

	"graveward/internal/loot"
	"graveward/logging"
	loggingcombat "graveward/logging/combat"
	loggingdeath "graveward/logging/death"
	logginglifecycle "graveward/logging/lifecycle"
	loggingsimulation "graveward/logging/simulation"
)

// payloads maps every event type the server publishes to its payload.
var payloads = map[logging.EventType]any{
	loggingcombat.EventSessionStarted:  loggingcombat.SessionStartedPayload{},
	loggingcombat.EventAttackResolved:  loggingcombat.AttackResolvedPayload{},
	loggingcombat.EventSessionEnded:    loggingcombat.SessionEndedPayload{},
	loggingcombat.EventRequestRejected: loggingcombat.RequestRejectedPayload{},

	loggingdeath.EventDeathOccurred:      loggingdeath.DeathOccurredPayload{},
	loggingdeath.EventItemClaimed:        loggingdeath.ItemClaimedPayload{},
	loggingdeath.EventClaimRejected:      loggingdeath.ClaimRejectedPayload{},
	loggingdeath.EventClaimWindowExpired: loggingdeath.ClaimWindowExpiredPayload{},
	loggingdeath.EventRecordClosed:       loggingdeath.RecordClosedPayload{},
	loggingdeath.EventTransactionFailed:  loggingdeath.TransactionFailedPayload{},

	logginglifecycle.EventEntitySpawned:      logginglifecycle.SpawnPayload{},
	logginglifecycle.EventEntityDisconnected: logginglifecycle.DisconnectedPayload{},
	logginglifecycle.EventEntityRespawned:    logginglifecycle.SpawnPayload{},

	loggingsimulation.EventTickOverrun:    loggingsimulation.TickOverrunPayload{},
	loggingsimulation.EventClockHalted:    loggingsimulation.ClockHaltedPayload{},
	loggingsimulation.EventCommandDropped: loggingsimulation.CommandDroppedPayload{},
}

func eventTypes() []string {
	types := make([]string, 0, len(payloads))
	for eventType := range payloads {
		types = append(types, string(eventType))
	}
	sort.Strings(types)
	return types
}

// buildSchema describes the stream envelope plus one definition per event
// payload, keyed by event type. Death records are included because
// /deaths/active returns them verbatim.
func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}

	definitions := make(jsonschema.Definitions, len(payloads)+1)
	for _, eventType := range eventTypes() {
		payload := reflector.Reflect(payloads[logging.EventType(eventType)])
		payload.Version = ""
		payload.Title = eventType
		definitions[eventType] = payload
	}
	record := reflector.Reflect(new(loot.DeathRecord))
	record.Version = ""
	record.Title = "DeathRecord"
	definitions["DeathRecord"] = record

	enum := make([]any, 0, len(payloads))
	for _, eventType := range eventTypes() {
		enum = append(enum, eventType)
	}

	root := reflector.Reflect(new(logging.Event))
	root.Title = "Graveward event stream"
	root.Description = "Events published on /ws and the JSON log sink. The payload shape depends on type; see $defs."
	root.Definitions = definitions
	if root.Properties != nil {
		if raw, ok := root.Properties.Get("type"); ok {
			if typeSchema, ok := raw.(*jsonschema.Schema); ok {
				typeSchema.Enum = enum
			}
		}
	}
	return root
}
