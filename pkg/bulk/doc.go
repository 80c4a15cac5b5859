// Package bulk moves record sets in and out of MSSQL, MySQL and PostgreSQL
// tables with the native bulk protocol of each backend.
//
// Every merge operation stages the records in a session scoped temp table,
// reconciles it with the target in one dialect specific script and drops it:
//
//	Start → ConnectionOpened → MetadataResolved → TempTableCreated → RowsStaged
//	      → StatementExecuted → IdentityMapped → TempTableDropped → ConnectionClosed
//
// Record types describe themselves, no reflection over struct fields is used:
//
//	type Person struct {
//	    ID       int64
//	    FullName string
//	}
//
//	func (Person) BulkSchema(b *schema.Builder[Person]) {
//	    b.Table("Person").
//	        KeyIdentity("Id", schema.ZeroIdentity(func(p *Person) *int64 { return &p.ID })).
//	        Column("FullName", func(p *Person) any { return p.FullName })
//	}
//
//	engine, err := bulk.NewEngine(mssql.NewBackend())
//	...
//	err = bulk.Insert(engine, db, people) // people[i].ID now holds the generated keys
//
// A call runs all its statements on one connection. Passing a *sql.DB checks
// one out for the call; passing a *sql.Conn reuses it, which is required with
// WithTx. Failures are returned as *Error and unwrap to the driver error.
package bulk
