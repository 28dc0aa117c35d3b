/*
Package caseconf assembles valid scientific-model cases through a staged wizard.

A blueprint declares variables with finite or numeric domains, relational rules between
them and the ordered stages a user walks through. Every assignment propagates: the legal
domains of dependent variables narrow, values that became illegal are cleared, and a
stage cannot be left until all of its variables hold legal values. The result of a
finished session is an immutable snapshot.

# Usage

	eng, err := caseconf.New("cesm") // built-in blueprint, or a path to a .yaml/.hcl file
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	id, _ := eng.Open(ctx, "")
	err = eng.Update(ctx, id, func(s *session.Session) error {
		batch, err := s.SetValue("COMP_ATM", "cam")
		if err != nil {
			return err
		}
		for _, d := range batch.Deltas {
			fmt.Println(d.Key, d.NewDomain)
		}
		return nil
	})

Adapters live under internal/adapters/http (REST and SSE), pkg/adapters/mcp (agent tools)
and internal/presentation/tui (terminal wizard). Snapshots persist through the
ports.SnapshotStore implementations in pkg/adapters.
*/
package caseconf
