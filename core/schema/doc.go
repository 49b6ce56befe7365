/*
Package schema defines the declarative model description that drives the
generated REST backend.

A model couples a schema with behavioral flags and the CRUD verbs it exposes:

	models:
	  User:
	    timestamps: true
	    strict: true
	    routes: [ALL]
	    schema:
	      name:  { type: String, required: true }
	      email: { type: String, required: true, isEmail: true }
	      phone: Integer
	      address:
	        city: String
	        zipCode: { type: Integer, required: true }

# Schema Nodes

Every field of a schema is one of three node kinds:

  - DataType: a bare primitive tag ("String", "Integer", "Decimal", "Date").
    It is checked for type only and carries no required semantics.
  - *Item: a typed leaf with optional required flag, default value and a
    constraint set (lt, lte, gt, gte, len, range, isEmail).
  - Schema: a nested schema describing an object-valued field.

Callers dispatch on the node kind with a type switch. Field order follows the
order of declaration in the source document.

# Verbs

The exposed routes of a model are listed as verbs: GET, GET_BY_ID, CREATE,
UPDATE, UPDATE_BY_ID, DELETE, DELETE_BY_ID, or ALL for every one of them.
*/
package schema
