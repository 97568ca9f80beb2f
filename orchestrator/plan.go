package orchestrator

import "github.com/logichill/sagaforge/saga"

// StepDef is one step in a linear saga plan: plans are linear per saga
// type; branches are modeled as distinct saga types, not as graph
// structure here.
type StepDef struct {
	StepName           string
	ParticipantService string
	InProgressState    saga.State
	CompletedState     saga.State
}

// Plan is the registered step sequence for one saga type.
type Plan struct {
	SagaType string
	Steps    []StepDef
}

// OrderCreationPlan is the canonical saga type: stock verification,
// stock reservation, payment processing, order confirmation.
func OrderCreationPlan() *Plan {
	return &Plan{
		SagaType: "OrderCreation",
		Steps: []StepDef{
			{
				StepName:           "VerifyStock",
				ParticipantService: "inventory",
				InProgressState:    saga.StateStockVerifying,
				CompletedState:     saga.StateStockVerified,
			},
			{
				StepName:           "ReserveStock",
				ParticipantService: "inventory",
				InProgressState:    saga.StateStockReserving,
				CompletedState:     saga.StateStockReserved,
			},
			{
				StepName:           "ProcessPayment",
				ParticipantService: "payments",
				InProgressState:    saga.StatePaymentProcessing,
				CompletedState:     saga.StatePaymentProcessed,
			},
			{
				StepName:           "ConfirmOrder",
				ParticipantService: "orders",
				InProgressState:    saga.StateOrderConfirming,
				CompletedState:     saga.StateCompleted,
			},
		},
	}
}

// PlanRegistry maps saga_type to its registered Plan.
type PlanRegistry struct {
	plans map[string]*Plan
}

// NewPlanRegistry creates a registry seeded with OrderCreationPlan.
func NewPlanRegistry() *PlanRegistry {
	r := &PlanRegistry{plans: make(map[string]*Plan)}
	r.Register(OrderCreationPlan())
	return r
}

// Register adds or replaces a plan.
func (r *PlanRegistry) Register(p *Plan) {
	r.plans[p.SagaType] = p
}

// Resolve returns the plan for sagaType, or ok=false.
func (r *PlanRegistry) Resolve(sagaType string) (*Plan, bool) {
	p, ok := r.plans[sagaType]
	return p, ok
}
